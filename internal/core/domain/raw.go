package domain

// RawObject is an object fetched from the store before normalisation.
type RawObject struct {
	// StoragePath is the object's slash-delimited path within the store.
	StoragePath string

	// Kind is the document kind inferred from the scan root.
	Kind Kind

	// Content is the raw object bytes.
	Content []byte
}

// Extension returns the lowercase file extension without the dot,
// or "" when the path has none.
func (r *RawObject) Extension() string {
	return PathExtension(r.StoragePath)
}

// PathExtension returns the lowercase extension of the final path
// segment, without the leading dot.
func PathExtension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			ext := path[i+1:]
			lower := make([]byte, len(ext))
			for j := 0; j < len(ext); j++ {
				c := ext[j]
				if c >= 'A' && c <= 'Z' {
					c += 'a' - 'A'
				}
				lower[j] = c
			}
			return string(lower)
		case '/':
			return ""
		}
	}
	return ""
}

// NormalisedDocument is the output of a normaliser: cleaned text plus
// metadata extracted along the way.
type NormalisedDocument struct {
	// Title is a best-effort title derived from the content.
	Title string

	// Content is the sanitised UTF-8 text.
	Content string

	// Metadata holds format-specific extras, such as a figma URL
	// found in a design payload.
	Metadata map[string]string
}
