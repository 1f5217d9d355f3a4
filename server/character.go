package server

import (
	"context"
	"errors"
	"fmt"

	"arenasync/protocol"
	"arenasync/store"
)

const (
	msgNoCharacter   = "账号没有角色信息"
	msgOneCharacter  = "最多创建1个角色"
	msgNameTaken     = "角色名称已经存在"
	msgCreateSuccess = "创建角色成功！ID: %d"
)

// CharacterService 角色创建与查询
type CharacterService struct {
	store store.Store
}

func NewCharacterService(st store.Store) *CharacterService {
	return &CharacterService{store: st}
}

// CreateCharacter 账号已有角色返回 store.ErrDuplicateAccount，重名返回 store.ErrDuplicateName
func (c *CharacterService) CreateCharacter(ctx context.Context, name, accountName string) (int32, error) {
	return c.store.CreateCharacter(ctx, name, accountName)
}

// GetByAccount 查询账号的角色；没有角色时 ok 为 false
func (c *CharacterService) GetByAccount(ctx context.Context, accountName string) (ch store.Character, ok bool, err error) {
	ch, err = c.store.CharacterByAccount(ctx, accountName)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.Character{}, false, nil
	case err != nil:
		return store.Character{}, false, err
	}
	return ch, true, nil
}

// InfoFrame 组装 Character 消息：有角色时为快照，否则为失败状态
func (c *CharacterService) InfoFrame(ctx context.Context, accountName string) ([]byte, error) {
	ch, ok, err := c.GetByAccount(ctx, accountName)
	if err != nil {
		return nil, fmt.Errorf("load character of %s: %w", accountName, err)
	}
	var payload []byte
	if ok {
		payload, err = protocol.CharacterInfo{
			ID:    ch.ID,
			Name:  ch.Name,
			Level: ch.Level,
			CurHP: ch.CurHP,
			MaxHP: ch.MaxHP,
			CurMP: ch.CurMP,
			MaxMP: ch.MaxMP,
		}.Encode()
	} else {
		payload, err = protocol.StatusMessage{Status: protocol.StatusFailure, Message: msgNoCharacter}.Encode()
	}
	if err != nil {
		return nil, err
	}
	return protocol.Frame(protocol.MsgCharacter, payload)
}

// handleCharacterCreate 名称与账号名不能为空；业务冲突以状态 2 回复，不算协议错误
func (s *Server) handleCharacterCreate(ctx context.Context, id ConnID, payload []byte) error {
	req, err := protocol.DecodeCharacterCreateRequest(payload)
	if err != nil {
		return err
	}
	if req.Name == "" || req.AccountName == "" {
		return invalid(msgMissingFields)
	}

	charID, err := s.chars.CreateCharacter(ctx, req.Name, req.AccountName)
	switch {
	case errors.Is(err, store.ErrDuplicateAccount):
		Log.Infow("character create rejected", "conn", id, "account", req.AccountName, "reason", "account limit")
		return s.replyStatus(id, protocol.MsgCharacterCreate, protocol.StatusFailure, msgOneCharacter)
	case errors.Is(err, store.ErrDuplicateName):
		Log.Infow("character create rejected", "conn", id, "name", req.Name, "reason", "name taken")
		return s.replyStatus(id, protocol.MsgCharacterCreate, protocol.StatusFailure, msgNameTaken)
	case err != nil:
		return fmt.Errorf("create character %s: %w", req.Name, err)
	}

	info, err := s.chars.InfoFrame(ctx, req.AccountName)
	if err != nil {
		return err
	}
	s.sendTo(id, info)
	Log.Infow("character created", "conn", id, "account", req.AccountName, "name", req.Name, "character", charID)
	return s.replyStatus(id, protocol.MsgCharacterCreate, protocol.StatusSuccess, fmt.Sprintf(msgCreateSuccess, charID))
}

func (s *Server) replyStatus(id ConnID, t protocol.MsgType, status uint8, text string) error {
	payload, err := protocol.StatusMessage{Status: status, Message: text}.Encode()
	if err != nil {
		return err
	}
	s.sendTo(id, protocol.MustFrame(t, payload))
	return nil
}
