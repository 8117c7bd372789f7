// Package iteration implements the iterator protocol for containers whose
// elements are not host-native values.
//
// An Iterator holds a current and an end cursor. Next returns a Step that
// is either an item or the terminal exhausted marker. Open exposes an
// iterator to the host as an object with __iter__ and __next__ hooks that
// keeps its container alive for as long as it exists.
package iteration
