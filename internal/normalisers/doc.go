// Package normalisers hosts the format normalisers and the registry
// that routes raw objects to them, plus the shared text sanitiser.
package normalisers
