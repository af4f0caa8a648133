package types

// Window is a half-open block range [Start, End).
type Window struct {
	Start uint32
	End   uint32
}

// Windows splits [start, last) into consecutive windows of step blocks. The
// final window is clipped to last.
func Windows(start, last, step uint32) []Window {
	if step == 0 || start >= last {
		return nil
	}

	windows := make([]Window, 0, (last-start)/step+1)
	for s := start; s < last; {
		e := s + step
		// e < s catches uint32 wrap-around near the top of the range
		if e > last || e < s {
			e = last
		}
		windows = append(windows, Window{Start: s, End: e})
		s = e
	}
	return windows
}

// Request builds the first page request for the window.
func (w Window) Request(pageSize uint32) BlockPaginationRequest {
	return BlockPaginationRequest{
		FromBlock: w.Start,
		FromIndex: 0,
		ToBlock:   w.End,
		PageSize:  pageSize,
	}
}
