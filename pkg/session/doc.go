/*
Package session serializes access to run states.

A run ID is never worked on by two goroutines at once: the Manager keeps a
reference-counted local mutex per run and, when configured, a distributed
lock so replicas sharing a store coordinate too.
*/
package session
