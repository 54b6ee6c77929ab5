package service

import (
	"strconv"
	"strings"

	"doom-loot/internal/pkg/i18n"
)

// ProfileStandard 普通账号模式，目录名不带后缀
const ProfileStandard = "STANDARD"

// PlayerIdentity 玩家身份：账号哈希 + 账号模式
type PlayerIdentity struct {
	AccountHash int64
	Profile     string
}

// Valid 未登录时账号哈希为 -1
func (p PlayerIdentity) Valid() bool {
	return p.AccountHash != -1
}

// Folder 玩家数据目录名：普通模式为 "<hash>"，其他模式为 "<hash>-<Title Case 模式名>"
func (p PlayerIdentity) Folder() string {
	folder := strconv.FormatInt(p.AccountHash, 10)
	profile := strings.TrimSpace(p.Profile)
	if profile != "" && !i18n.EqualFold(profile, ProfileStandard) {
		folder += "-" + i18n.TitleCase(profile)
	}
	return folder
}
