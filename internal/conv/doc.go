// Package conv provides checked integer conversions for sizes read from
// untrusted snapshot headers.
package conv
