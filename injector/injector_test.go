package injector

import (
	"sync"
	"testing"
	"time"

	"github.com/baljemmett/ttymatrix/keys"
)

type noopHoldoff struct{}

func (noopHoldoff) Start(ms int)  {}
func (noopHoldoff) Running() bool { return false }

// pumpScanPulses repeatedly calls Observe to stand in for the scan bus
// driving the fast path, the only thing that ever advances the injector's
// tick counter. It stops when done is closed.
func pumpScanPulses(t *testing.T, inj *Injector, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
			inj.Observe(0xff)
			time.Sleep(time.Microsecond)
		}
	}
}

func newTestInjector() *Injector {
	return New(noopHoldoff{}, func() bool { return true }, func() {})
}

func TestSendKeyRestoresIdleTable(t *testing.T) {
	inj := newTestInjector()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pumpScanPulses(t, inj, done)
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	sc := keys.ScanFor(keys.KeyA)
	if err := inj.SendKey(keys.KeyA); err != nil {
		t.Fatalf("SendKey: %v", err)
	}

	inj.mu.RLock()
	got := inj.data[sc.Row]
	inj.mu.RUnlock()

	if got != 0xff {
		t.Fatalf("row %d left at %#x after key-up, want 0xff", sc.Row, got)
	}
}

func TestSendKeyRejectsKeyWithNoMatrixPosition(t *testing.T) {
	inj := newTestInjector()
	if err := inj.SendKey(keys.KeyNone); err == nil {
		t.Fatal("expected an error injecting KeyNone")
	}
}

func TestObserveReturnsIdleDataOutsideInjection(t *testing.T) {
	inj := newTestInjector()
	col0, col1 := inj.Observe(0xff)
	if col0 != 0xff || col1 != 0xbf {
		t.Fatalf("got (%#x,%#x), want (0xff,0xbf) for idle strobe 0xff", col0, col1)
	}
}
