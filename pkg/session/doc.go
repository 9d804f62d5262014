/*
Package session serializes access to conversation sessions.

A Manager wraps a ports.SessionStore with per-key mutexes so that a single message
per session runs at a time on a replica, while different sessions proceed
concurrently. An optional ports.DistributedLocker extends the guarantee across replicas.
*/
package session
