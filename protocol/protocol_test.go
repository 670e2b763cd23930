/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package protocol_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyofalicia/datadirector"
	"github.com/storyofalicia/datadirector/datastore/mock"
	"github.com/storyofalicia/datadirector/model"
	"github.com/storyofalicia/datadirector/protocol"
)

func TestBuildCharacterZeroValue(t *testing.T) {
	var dst protocol.Character
	protocol.BuildCharacter(&dst, model.Character{})
	assert.Equal(t, protocol.Character{}, dst)
}

func TestBuildCharacter(t *testing.T) {
	c := model.NewCharacter(1)
	c.Parts = model.CharacterParts{ModelID: 10, MouthID: 2, FaceID: 3}
	c.Appearance.Height = 180
	c.Appearance.EmblemID = 7

	var dst protocol.Character
	protocol.BuildCharacter(&dst, c)

	assert.Equal(t, uint8(10), dst.Parts.CharID)
	assert.Equal(t, uint8(2), dst.Parts.MouthSerialID)
	assert.Equal(t, uint8(3), dst.Parts.FaceSerialID)
	assert.Equal(t, uint16(180), dst.Appearance.Height)
	assert.Equal(t, uint16(7), dst.Appearance.EmblemID)
}

func TestBuildClampsValuesWiderThanTheWire(t *testing.T) {
	c := model.NewCharacter(1)
	c.Parts.ModelID = 300
	c.Appearance.VoiceID = 255
	c.Appearance.Height = 70000

	var char protocol.Character
	protocol.BuildCharacter(&char, c)
	assert.Equal(t, uint8(255), char.Parts.CharID)
	assert.Equal(t, uint8(255), char.Appearance.VoiceID)
	assert.Equal(t, uint16(65535), char.Appearance.Height)

	h := model.NewHorse(2)
	h.Parts.SkinTid = 256
	h.Appearance.Scale = 1 << 20
	h.ClassProgress = 1000

	var horse protocol.Horse
	protocol.BuildHorse(&horse, h)
	assert.Equal(t, uint8(255), horse.Parts.SkinID)
	assert.Equal(t, uint8(255), horse.Appearance.Scale)
	assert.Equal(t, uint8(255), horse.ClassProgress)
}

func TestBuildHorse(t *testing.T) {
	h := model.NewHorse(55)
	h.Tid = 20002
	h.Name = "Comet"
	h.Parts.ManeTid = 4
	h.Stats.Rush = 12
	h.Mastery.JumpCount = 300
	h.PotentialType = 2
	h.PotentialLevel = 1
	h.EmblemUid = 9

	var dst protocol.Horse
	protocol.BuildHorse(&dst, h)

	assert.Equal(t, uint32(55), dst.Uid)
	assert.Equal(t, uint32(20002), dst.Tid)
	assert.Equal(t, "Comet", dst.Name)
	assert.Equal(t, uint8(4), dst.Parts.ManeID)
	assert.Equal(t, uint32(12), dst.Stats.Rush)
	assert.Equal(t, uint32(300), dst.Mastery.JumpCount)
	assert.Equal(t, protocol.HorsePotential{Type: 2, Level: 1}, dst.Potential)
	assert.Equal(t, uint32(9), dst.Emblem)

	var zero protocol.Horse
	protocol.BuildHorse(&zero, model.Horse{})
	assert.Equal(t, protocol.Horse{}, zero)
}

func TestBuildItems(t *testing.T) {
	ctx := context.Background()
	dd, err := datadirector.New(ctx, mock.NewBackend().Stores())
	require.NoError(t, err)

	var uids []model.Uid
	for _, count := range []uint32{1, 5} {
		r, err := dd.CreateItem(ctx)
		require.NoError(t, err)
		require.NoError(t, r.Mutable(func(item *model.Item) error {
			item.Tid = 30000 + model.Tid(count)
			item.Count = count
			uids = append(uids, item.Uid)
			return nil
		}))
	}

	records, err := dd.GetItems(ctx, []model.Uid{uids[1], 999, uids[0]})
	require.NoError(t, err)
	require.Len(t, records, 3)

	var items []protocol.Item
	require.NoError(t, protocol.BuildItems(&items, records))

	require.Len(t, items, 2, "unavailable records are skipped")
	assert.Equal(t, protocol.Item{Uid: uint32(uids[1]), Tid: 30005, Count: 5}, items[0])
	assert.Equal(t, protocol.Item{Uid: uint32(uids[0]), Tid: 30001, Count: 1}, items[1])
}
