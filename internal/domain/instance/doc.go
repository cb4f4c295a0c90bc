/*
Package instance is the registry of launched application instances.

The Manager is the single writer of instance state. Readers always get
copies. State changes follow a fixed machine:

	Launching -> Running -> Closing -> Closed
	Launching -> Failed
	Running   -> Crashed
	Closing   -> Failed   (close could not be confirmed)

Closed, Crashed and Failed are terminal. Once an instance is terminal every
further UpdateState is a no-op success, which keeps repeated closes
idempotent. Only terminal instances can be removed. Ids are ULIDs and never repeat;
the most recently removed ids are also remembered so a stale handle cannot
register them again.
*/
package instance
