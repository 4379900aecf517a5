// Package model 定义数据库实体模型
package model

import (
	"database/sql"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserInfo 用户信息模型，对应 user_info 表
// 实时核心只读取资料快照字段（姓名、头像），账号管理由外部服务负责
type UserInfo struct {
	gorm.Model

	// Uuid 用户唯一标识
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(36);comment:用户唯一id" json:"id"`

	// FirstName / LastName 姓名，消息和来电界面展示用
	FirstName string `gorm:"column:first_name;type:varchar(50);not null;comment:名" json:"first_name"`
	LastName  string `gorm:"column:last_name;type:varchar(50);comment:姓" json:"last_name"`

	// AvatarUrl 头像地址
	AvatarUrl string `gorm:"column:avatar_url;type:varchar(255);comment:头像" json:"avatar_url"`

	// Email 邮箱，登录凭证由外部认证服务校验
	Email string `gorm:"column:email;index;type:varchar(100);comment:邮箱" json:"-"`

	// Password 密码哈希，不存明文
	Password string `gorm:"column:password;type:varchar(100);comment:密码" json:"-"`

	// LastOnlineAt 最近一次上线时间
	LastOnlineAt sql.NullTime `gorm:"column:last_online_at;type:datetime;comment:上次上线时间" json:"-"`

	// RawPassword 明文密码（不入库），BeforeSave 中加密
	RawPassword string `gorm:"-" json:"-"`
}

// TableName 指定表名
func (UserInfo) TableName() string {
	return "user_info"
}

// BeforeSave GORM Hook：将 RawPassword 加密后存入 Password
func (u *UserInfo) BeforeSave(tx *gorm.DB) (err error) {
	if u.RawPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.RawPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u.Password = string(hash)
		u.RawPassword = ""
	}
	return nil
}

// ProfileSnapshot 资料快照，随消息和来电事件下发，
// 避免接收端再查一次用户资料
type ProfileSnapshot struct {
	Id        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarUrl string `json:"avatar_url"`
}

// Snapshot 取出资料快照
func (u *UserInfo) Snapshot() ProfileSnapshot {
	return ProfileSnapshot{
		Id:        u.Uuid,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarUrl: u.AvatarUrl,
	}
}
