package utils

import "strings"

// StringPtr returns a pointer to the given string.
// This is a helper function for discordgo fields that require a *string.
func StringPtr(s string) *string {
	return &s
}

// ParseUserID accepts a raw snowflake or a user mention like <@123> or <@!123>.
func ParseUserID(input string) string {
	id := strings.TrimSpace(input)
	if strings.HasPrefix(id, "<@") && strings.HasSuffix(id, ">") {
		id = strings.TrimPrefix(strings.TrimSuffix(id, ">"), "<@")
		id = strings.TrimPrefix(id, "!")
	}
	return id
}
