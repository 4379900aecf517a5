package constants

import "time"

const (
	CHANNEL_SIZE = 100 // 连接发送通道大小

	// 通话挂断去重窗口：窗口内的重复 call_end 只转发、不再写通话记录，
	// 去重条目以该窗口为存活时间
	CALL_END_DEDUP_WINDOW = 2 * time.Second

	// 发送者资料快照缓存存活时间
	PROFILE_CACHE_TTL = 10 * time.Minute

	// 消息推送摘要最大长度
	NOTIFY_PREVIEW_LEN = 50

	REDIS_TIMEOUT = 3 // redis 操作超时（秒）
)
