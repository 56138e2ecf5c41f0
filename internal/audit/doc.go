// Package audit delivers security events to a Sink off the request path.
//
// A [Dispatcher] owns one goroutine that drains a bounded queue into the sink. When the
// queue is full it either drops the event, counting it, or blocks the emitter until
// the queue drains or the emitter's context ends. Sink panics are recovered and counted
// so one bad sink cannot stop delivery.
//
// The package decides nothing about which events exist; callers build [Event] values
// and this package only moves them. It must not import the root authcore package.
package audit
