// Package challenge binds the bindings-challenge types: a generic Pair, the
// WhatsIt class with two constructors and Pairs, a container whose
// iterator yields views into its elements.
package challenge
