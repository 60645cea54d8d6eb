package isolate

// SplitResult separates the harness result payload from surrounding guest
// output, using the same frame scanner the call channel uses. ok is false
// when stdout holds no complete result frame.
func SplitResult(stdout string) (payload, rest string, ok bool) {
	s := markerScanner{prefix: resultPrefix}
	payloads := s.feed([]byte(stdout))
	if len(payloads) == 0 {
		return "", stdout, false
	}
	return payloads[0], s.output() + string(s.buf), true
}
