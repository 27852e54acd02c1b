package utils

import (
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/marbel89/chantbot/model"
)

// CheckAuth 检查用户是否有权限
func CheckAuth(auth model.Auth, userID string, roles []string) bool {
	// 开发者
	if slices.Contains(auth.Developers, userID) {
		return true
	}

	// 管理员角色
	for _, role := range roles {
		if slices.Contains(auth.AdminRoles, role) {
			return true
		}
	}

	return false
}

// InteractionUser returns the invoking user and, inside a guild, their roles.
func InteractionUser(i *discordgo.Interaction) (*discordgo.User, []string) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User, i.Member.Roles
	}
	return i.User, nil
}
