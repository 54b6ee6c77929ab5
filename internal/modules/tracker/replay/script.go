// Package replay 以 JSON Lines 脚本模拟宿主客户端：脚本逐行描述世界状态变化与事件，
// 由 Runner 依次投递给追踪器。
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"doom-loot/internal/modules/tracker/event"
	"doom-loot/internal/modules/tracker/service"
)

// 脚本步骤类型
const (
	StepItem   = "item" // 注册物品名称与价格
	StepTick   = "tick"
	StepChat   = "chat"
	StepWidget = "widget"
	StepMenu   = "menu"
	StepDeath  = "death"
	StepLogin  = "login"
	StepConfig = "config"
)

// Step 脚本中的一行
type Step struct {
	Type string `json:"type"`
	// AtMillis 相对脚本开始的毫秒数
	AtMillis int64 `json:"at_ms"`

	// 世界状态（省略表示不变）
	PlayerPresent *bool                `json:"player_present,omitempty"`
	BossNearby    *bool                `json:"boss_nearby,omitempty"`
	Interacting   *string              `json:"interacting,omitempty"`
	Slots         []service.WidgetSlot `json:"slots,omitempty"`

	// item
	ItemID int    `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Price  int64  `json:"price,omitempty"`

	// chat
	ChatType string `json:"chat_type,omitempty"`
	Text     string `json:"text,omitempty"`

	// widget
	Group int `json:"group,omitempty"`

	// menu
	Option string `json:"option,omitempty"`
	Target string `json:"target,omitempty"`

	// death
	Actor string `json:"actor,omitempty"`
	Local *bool  `json:"local,omitempty"`

	// login
	AccountHash int64  `json:"account_hash,omitempty"`
	Profile     string `json:"profile,omitempty"`

	// config
	ConfigGroup string `json:"config_group,omitempty"`
	Key         string `json:"key,omitempty"`
	Value       string `json:"value,omitempty"`
}

// Event 将步骤转换为宿主事件，item 步骤返回 nil
func (s Step) Event(start time.Time) event.Event {
	at := start.Add(time.Duration(s.AtMillis) * time.Millisecond)

	switch s.Type {
	case StepTick:
		return event.Tick{At: at}
	case StepChat:
		chatType := s.ChatType
		if chatType == "" {
			chatType = event.ChatGameMessage
		}
		return event.ChatMessage{At: at, Type: chatType, Text: s.Text}
	case StepWidget:
		group := s.Group
		if group == 0 {
			group = service.LootWidgetGroup
		}
		return event.WidgetLoaded{At: at, GroupID: group}
	case StepMenu:
		return event.MenuOptionClicked{At: at, Option: s.Option, Target: s.Target}
	case StepDeath:
		local := true
		if s.Local != nil {
			local = *s.Local
		}
		return event.ActorDeath{At: at, ActorName: s.Actor, LocalPlayer: local}
	case StepLogin:
		return event.Login{At: at, AccountHash: s.AccountHash, Profile: s.Profile}
	case StepConfig:
		return event.ConfigChanged{At: at, Group: s.ConfigGroup, Key: s.Key, Value: s.Value}
	default:
		return nil
	}
}

func (s Step) validate() error {
	switch s.Type {
	case StepItem:
		if s.ItemID <= 0 {
			return fmt.Errorf("item step requires a positive id")
		}
	case StepTick, StepChat, StepWidget, StepMenu, StepDeath, StepLogin:
	case StepConfig:
		if s.ConfigGroup == "" || s.Key == "" {
			return fmt.Errorf("config step requires config_group and key")
		}
	case "":
		return fmt.Errorf("missing step type")
	default:
		return fmt.Errorf("unknown step type %q", s.Type)
	}
	if s.AtMillis < 0 {
		return fmt.Errorf("at_ms must not be negative")
	}
	return nil
}

// Decode 读取脚本。空行与以 # 开头的行被忽略；任何一行格式错误都会返回带行号的错误
func Decode(r io.Reader) ([]Step, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var steps []Step
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || strings.HasPrefix(string(line), "#") {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.DisallowUnknownFields()

		var step Step
		if err := dec.Decode(&step); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		steps = append(steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return steps, nil
}
