package styles

import "github.com/charmbracelet/lipgloss"

var (
	ContentWidth = 54
)

var (
	TitleStyle lipgloss.Style
	InfoStyle  lipgloss.Style

	UserLabelStyle lipgloss.Style
	UserMsgStyle   lipgloss.Style
	AiLabelStyle   lipgloss.Style
	AiMsgStyle     lipgloss.Style
	PartialStyle   lipgloss.Style

	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style

	InputBoxStyle lipgloss.Style

	WelcomeArtStyle      lipgloss.Style
	WelcomeSubtitleStyle lipgloss.Style

	ModalStyle         lipgloss.Style
	ModalTitleStyle    lipgloss.Style
	ModalItemStyle     lipgloss.Style
	ModalHeaderStyle   lipgloss.Style
	ModalSelectedStyle lipgloss.Style

	KeyStyle  lipgloss.Style
	DescStyle lipgloss.Style

	HintColor lipgloss.Color

	TokenStyle lipgloss.Style
	ModelStyle lipgloss.Style
	BarStyle   lipgloss.Style
)

func build(t Theme) {
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Padding(0, 1)

	InfoStyle = lipgloss.NewStyle().
		Foreground(t.TextMuted)

	UserLabelStyle = lipgloss.NewStyle().
		Foreground(t.TextInverse).
		Background(t.Secondary).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)

	UserMsgStyle = lipgloss.NewStyle().
		Foreground(t.TextPrimary).
		PaddingLeft(2).
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(t.Secondary)

	AiLabelStyle = lipgloss.NewStyle().
		Foreground(t.TextInverse).
		Background(t.Primary).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)

	AiMsgStyle = lipgloss.NewStyle().
		Foreground(t.TextPrimary).
		PaddingLeft(2).
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(t.Primary)

	PartialStyle = AiMsgStyle.Foreground(t.TextMuted)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(t.Error).
		Bold(true)

	WarningStyle = lipgloss.NewStyle().
		Foreground(t.Warning)

	InputBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(0, 1)

	WelcomeArtStyle = lipgloss.NewStyle().
		Foreground(t.TextPrimary).
		Bold(true)

	WelcomeSubtitleStyle = lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Italic(true)

	ModalStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2)

	ModalTitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Width(ContentWidth).
		MarginBottom(1)

	ModalItemStyle = lipgloss.NewStyle().
		Foreground(t.TextPrimary).
		Padding(0, 1).
		Width(ContentWidth)

	ModalHeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.TextMuted).
		PaddingLeft(1).
		Width(ContentWidth)

	ModalSelectedStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Width(ContentWidth).
		Background(t.Selected).
		Foreground(t.TextPrimary)

	KeyStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Width(12)

	DescStyle = lipgloss.NewStyle().
		Foreground(t.TextPrimary)

	HintColor = t.TextMuted

	TokenStyle = lipgloss.NewStyle().Foreground(t.TextMuted)
	ModelStyle = lipgloss.NewStyle().Foreground(t.Primary)
	BarStyle = lipgloss.NewStyle().
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
}

// SetContentWidth resizes the modal styles.
func SetContentWidth(w int) {
	ContentWidth = w
	ModalTitleStyle = ModalTitleStyle.Width(w)
	ModalItemStyle = ModalItemStyle.Width(w)
	ModalHeaderStyle = ModalHeaderStyle.Width(w)
	ModalSelectedStyle = ModalSelectedStyle.Width(w)
}
