package resilientclient

// Timings records nullable milliseconds elapsed since an attempt started
// at each named event. A nil field means the event was never observed
// (for example, no TLS handshake on a plain-HTTP connection). On a reused
// keep-alive connection lookup/connect/secureConnect collapse onto socket
// and carry its value. With timing disabled no Timings value is produced.
type Timings struct {
	Socket        *int64
	Lookup        *int64
	Connect       *int64
	SecureConnect *int64
	Response      *int64
	End           *int64
}

// TimingPhases is the derived duration view over Timings. Any component
// is absent (nil) when either endpoint it depends on is absent.
type TimingPhases struct {
	Wait      *int64
	DNS       *int64
	TCP       *int64
	TLS       *int64
	FirstByte *int64
	Download  *int64
	Total     *int64
}

func sub(a, b *int64) *int64 {
	if a == nil || b == nil {
		return nil
	}
	d := *a - *b
	return &d
}

// Phases derives TimingPhases from t. wait = socket, dns = lookup-socket,
// tcp = connect-lookup, tls = secureConnect-connect,
// firstByte = response-secureConnect, download = end-response, total = end.
func (t *Timings) Phases() TimingPhases {
	if t == nil {
		return TimingPhases{}
	}
	return TimingPhases{
		Wait:      t.Socket,
		DNS:       sub(t.Lookup, t.Socket),
		TCP:       sub(t.Connect, t.Lookup),
		TLS:       sub(t.SecureConnect, t.Connect),
		FirstByte: sub(t.Response, t.SecureConnect),
		Download:  sub(t.End, t.Response),
		Total:     t.End,
	}
}
