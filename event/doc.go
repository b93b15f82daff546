// Package event decodes the records written to per-thread allocator logs.
//
// Every record is one line of the form
//
//	<seq> <action> <arg>*
//
// where seq is a decimal sequence number shared by all logs of a run, and action is one of
// malloc, free, realloc-begin or realloc-end. Sizes are decimal and pointers hexadecimal:
//
//	12 malloc 24 0x7f3a10
//	13 realloc-begin 0x7f3a10
//	14 realloc-end 0x7f3a10 48 0x7f3a40
//	15 free 0x7f3a40
package event
