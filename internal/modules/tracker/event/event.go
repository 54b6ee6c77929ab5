// Package event 定义宿主客户端投递给追踪器的事件。
// Event 是封闭的联合类型，只有本包内的类型实现它，追踪器按具体类型分发。
package event

import "time"

// Event 宿主事件
type Event interface {
	// Name 事件名，用于日志与指标标签
	Name() string
	// Time 事件发生时间，零值表示由追踪器时钟决定
	Time() time.Time

	sealed()
}

// 聊天消息类型
const (
	ChatGameMessage = "GAMEMESSAGE"
	ChatPublic      = "PUBLICCHAT"
)

// Tick 一个游戏刻
type Tick struct {
	At time.Time
}

// ChatMessage 聊天框消息（原始文本，可能包含颜色标签）
type ChatMessage struct {
	At   time.Time
	Type string
	Text string
}

// WidgetLoaded 某个界面组加载完成
type WidgetLoaded struct {
	At      time.Time
	GroupID int
}

// MenuOptionClicked 玩家点击菜单项
type MenuOptionClicked struct {
	At     time.Time
	Option string
	Target string
}

// ActorDeath 角色死亡
type ActorDeath struct {
	At          time.Time
	ActorName   string
	LocalPlayer bool // 是否为本地玩家
}

// Login 登录或切换账号模式
type Login struct {
	At          time.Time
	AccountHash int64
	Profile     string // STANDARD / BETA / SEASONAL ...
}

// ConfigChanged 配置项变更
type ConfigChanged struct {
	At    time.Time
	Group string
	Key   string
	Value string
}

func (e Tick) Name() string              { return "tick" }
func (e ChatMessage) Name() string       { return "chat_message" }
func (e WidgetLoaded) Name() string      { return "widget_loaded" }
func (e MenuOptionClicked) Name() string { return "menu_option_clicked" }
func (e ActorDeath) Name() string        { return "actor_death" }
func (e Login) Name() string             { return "login" }
func (e ConfigChanged) Name() string     { return "config_changed" }

func (e Tick) Time() time.Time              { return e.At }
func (e ChatMessage) Time() time.Time       { return e.At }
func (e WidgetLoaded) Time() time.Time      { return e.At }
func (e MenuOptionClicked) Time() time.Time { return e.At }
func (e ActorDeath) Time() time.Time        { return e.At }
func (e Login) Time() time.Time             { return e.At }
func (e ConfigChanged) Time() time.Time     { return e.At }

func (Tick) sealed()              {}
func (ChatMessage) sealed()       {}
func (WidgetLoaded) sealed()      {}
func (MenuOptionClicked) sealed() {}
func (ActorDeath) sealed()        {}
func (Login) sealed()             {}
func (ConfigChanged) sealed()     {}
