// Package mysql 提供 Repository 层聚合与构造
package mysql

import (
	"gorm.io/gorm"

	"moment_social_server/internal/dao/mysql/repository"
)

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	User         UserRepository
	Conversation ConversationRepository
	Participant  ParticipantRepository
	Message      MessageRepository
	Call         CallRepository
	Presence     PresenceRepository
	Reaction     ReactionRepository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         repository.NewUserRepository(db),
		Conversation: repository.NewConversationRepository(db),
		Participant:  repository.NewParticipantRepository(db),
		Message:      repository.NewMessageRepository(db),
		Call:         repository.NewCallRepository(db),
		Presence:     repository.NewPresenceRepository(db),
		Reaction:     repository.NewReactionRepository(db),
	}
}
