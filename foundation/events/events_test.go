package events_test

import (
	"fmt"
	"testing"

	"github.com/zuxlabs/ammledger/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_FanOut(t *testing.T) {
	t.Log("Given the need to fan events out to subscribers.")
	{
		evts := events.New()

		t.Logf("\tTest 0:\tWhen two subscribers are registered.")
		{
			a := evts.Acquire("a")
			b := evts.Acquire("b")

			if evts.Acquire("a") != a {
				t.Fatalf("\t%s\tTest 0:\tShould return the same channel for the same id.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould return the same channel for the same id.", success)

			evts.Send("block 1 mined")

			if msg := <-a; msg != "block 1 mined" {
				t.Fatalf("\t%s\tTest 0:\tShould deliver the event to the first subscriber: %q", failed, msg)
			}
			if msg := <-b; msg != "block 1 mined" {
				t.Fatalf("\t%s\tTest 0:\tShould deliver the event to the second subscriber: %q", failed, msg)
			}
			t.Logf("\t%s\tTest 0:\tShould deliver the event to every subscriber.", success)

			if err := evts.Release("a"); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to release a subscriber: %v", failed, err)
			}
			if _, open := <-a; open {
				t.Fatalf("\t%s\tTest 0:\tShould close a released channel.", failed)
			}
			if err := evts.Release("a"); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould not release a subscriber twice.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould close and forget a released subscriber.", success)
		}

		t.Logf("\tTest 1:\tWhen a subscriber falls behind.")
		{
			for i := range 150 {
				evts.Send(fmt.Sprintf("event %d", i))
			}

			if evts.Subscribers() != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould keep the slow subscriber registered.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould never block the sender.", success)

			evts.Shutdown()

			if evts.Subscribers() != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould drop every subscriber on shutdown.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould drop every subscriber on shutdown.", success)
		}
	}
}
