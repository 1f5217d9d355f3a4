package protocol

import "fmt"

// MsgType 消息类型（线上编码为 1 字节），取值固定，客户端依赖这些编号
type MsgType uint8

const (
	MsgOnConnect       MsgType = 0
	MsgPlayerLogin     MsgType = 1
	MsgPlayerOnline    MsgType = 2
	MsgPlayerMove      MsgType = 3
	MsgCharacter       MsgType = 4
	MsgCharacterCreate MsgType = 5
	MsgItemCollected   MsgType = 6
	MsgItemSpawned     MsgType = 7
	MsgPlayerList      MsgType = 8
	MsgPing            MsgType = 9
	MsgPong            MsgType = 10
	MsgOffline         MsgType = 11
	MsgError           MsgType = 255
)

// 状态字节约定：带状态的负载以 1=成功 / 2=失败 开头，后跟一条字符串
const (
	StatusSuccess uint8 = 1
	StatusFailure uint8 = 2
)

var msgTypeNames = map[MsgType]string{
	MsgOnConnect:       "OnConnect",
	MsgPlayerLogin:     "PlayerLogin",
	MsgPlayerOnline:    "PlayerOnline",
	MsgPlayerMove:      "PlayerMove",
	MsgCharacter:       "Character",
	MsgCharacterCreate: "CharacterCreate",
	MsgItemCollected:   "ItemCollected",
	MsgItemSpawned:     "ItemSpawned",
	MsgPlayerList:      "PlayerList",
	MsgPing:            "Ping",
	MsgPong:            "Pong",
	MsgOffline:         "Offline",
	MsgError:           "Error",
}

// Known 是否为协议定义过的类型
func (t MsgType) Known() bool {
	_, ok := msgTypeNames[t]
	return ok
}

func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MsgType(%d)", uint8(t))
}
