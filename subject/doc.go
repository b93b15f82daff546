// Package subject runs a validate build of an allocator and collects what it reports: the heap
// size it used and the threads that wrote an event log. Each reported thread id N names the log
// file N<ext> in the log directory.
package subject
