package cripta

// TraceFunc observes intermediate values of the cipher. Stage names are short
// labels such as "ip", "round 3 L" or "subkey 16". The bits passed in must be
// treated as read-only.
//
// With parallel ECB enabled the hook is called from several goroutines.
type TraceFunc func(stage string, bits Bits)

func (t TraceFunc) emit(stage string, bits Bits) {
	if t != nil {
		t(stage, bits)
	}
}
