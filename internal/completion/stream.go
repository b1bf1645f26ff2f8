package completion

import "strings"

// ChunkSource yields raw stream chunks. Fragment returns the text carried by the current
// chunk, which may be empty.
type ChunkSource interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

// Stream is a lazy, finite, non-restartable sequence of cumulative text snapshots.
//
//	for s.Next() {
//		fmt.Println(s.Current())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	src     ChunkSource
	text    strings.Builder
	current string
	done    bool
}

func NewStream(src ChunkSource) *Stream {
	return &Stream{src: src}
}

// Next advances to the next snapshot. Chunks without text are skipped.
func (s *Stream) Next() bool {
	for !s.done {
		if !s.src.Next() {
			s.done = true
			return false
		}
		frag := s.src.Fragment()
		if frag == "" {
			continue
		}
		s.text.WriteString(frag)
		s.current = s.text.String()
		return true
	}
	return false
}

// Current returns the cumulative text at the current snapshot.
func (s *Stream) Current() string {
	return s.current
}

// Text returns everything received so far.
func (s *Stream) Text() string {
	return s.text.String()
}

func (s *Stream) Err() error {
	return s.src.Err()
}

func (s *Stream) Close() error {
	s.done = true
	return s.src.Close()
}
