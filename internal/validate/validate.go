package validate

import "fmt"

// Input length limits shared by the API and the browser app.
const (
	MaxQueryLength     = 1000
	MaxVideoIDLength   = 200
	MaxFilenameLength  = 255
	MaxObjectKeyLength = 1024
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Query(s string) string     { return checkLen(s, MaxQueryLength, "query") }
func VideoID(s string) string   { return checkLen(s, MaxVideoIDLength, "video id") }
func Filename(s string) string  { return checkLen(s, MaxFilenameLength, "file name") }
func ObjectKey(s string) string { return checkLen(s, MaxObjectKeyLength, "object key") }

// FieldLimits returns field names mapped to max lengths for /api/limits.
func FieldLimits() map[string]int {
	return map[string]int{
		"query":     MaxQueryLength,
		"videoId":   MaxVideoIDLength,
		"filename":  MaxFilenameLength,
		"objectKey": MaxObjectKeyLength,
	}
}
