// Package event provides the mailbox that funnels watcher and broker
// notifications into the relay loop.
//
// Producers build an Event value and call Queue.Post from any goroutine.
// The relay loop is the only consumer:
//
//	q := event.NewQueue()
//	go watcher(q)            // q.Post(event.FileChanged())
//
//	for {
//	    if err := q.Wait(ctx, interval); err != nil {
//	        return err
//	    }
//	    if !q.Check() {
//	        // timed out
//	        continue
//	    }
//	    for ev, ok := q.Pop(); ok; ev, ok = q.Pop() {
//	        handle(ev)
//	    }
//	}
//
// The wake signal is a "something happened" flag, not a counter: several
// posts between two Checks raise it once, and Pop drains every event.
package event
