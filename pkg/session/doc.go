/*
Package session implements session leases and persistence orchestration.

A Manager serializes every request that touches a session id: a ref-counted local
slot handles requests within one process and an optional DistributedLocker extends
the lease across replicas. Transact is the unit of work of the dispatcher: load or
create, mutate, save exactly once.
*/
package session
