// Package output renders command results as text or JSON.
//
// Results that know how to print themselves for humans implement
// TextWriter; everything else falls back to fmt's default formatting.
package output
