package utils

// DotIdentifier converts a name to a valid Graphviz DOT identifier: only letters, digits, and underscores
// are kept, other characters are replaced with underscores.
//
// If the name starts with a digit, it is prefixed with an underscore. An empty name becomes "G".
func DotIdentifier(name string) string {
	if name == "" {
		return "G"
	}
	result := make([]rune, 0, len(name)+1)
	if name[0] >= '0' && name[0] <= '9' {
		result = append(result, '_')
	}
	for _, r := range name {
		if isIdentifierRune(r) {
			result = append(result, r)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}

func isIdentifierRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}
