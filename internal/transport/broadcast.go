package transport

// Broadcast sends data to every peer. A failed send is reported to
// onFail, when set, and does not stop delivery to the remaining peers.
// It returns the number of successful sends.
func Broadcast(peers []Peer, data []byte, onFail func(p Peer, err error)) int {
	sent := 0
	for _, p := range peers {
		if err := p.Send(data); err != nil {
			if onFail != nil {
				onFail(p, err)
			}
			continue
		}
		sent++
	}
	return sent
}
