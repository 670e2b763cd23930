/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package protocol converts read-only entity snapshots into the structures the
// network layer sends to clients. Builders never mutate their input.
//
// Wire fields are narrower than the stored values in places (part and serial
// ids are one byte, character appearance is two). Values that do not fit are
// clamped to the largest value of the wire field rather than wrapped.
package protocol

import (
	"github.com/storyofalicia/datadirector"
	"github.com/storyofalicia/datadirector/model"
)

type CharacterParts struct {
	CharID        uint8
	MouthSerialID uint8
	FaceSerialID  uint8
}

type CharacterAppearance struct {
	VoiceID     uint8
	HeadSize    uint16
	Height      uint16
	ThighVolume uint16
	LegVolume   uint16
	EmblemID    uint16
}

type Character struct {
	Parts      CharacterParts
	Appearance CharacterAppearance
}

type HorseParts struct {
	SkinID uint8
	ManeID uint8
	TailID uint8
	FaceID uint8
}

type HorseAppearance struct {
	Scale      uint8
	LegLength  uint8
	LegVolume  uint8
	BodyLength uint8
	BodyVolume uint8
}

type HorseStats struct {
	Agility   uint32
	Courage   uint32
	Rush      uint32
	Endurance uint32
	Ambition  uint32
}

type HorseMastery struct {
	SpurMagicCount  uint32
	JumpCount       uint32
	SlidingTime     uint32
	GlidingDistance uint32
}

type Horse struct {
	Uid           uint32
	Tid           uint32
	Name          string
	Parts         HorseParts
	Appearance    HorseAppearance
	Stats         HorseStats
	Rating        uint32
	Class         uint8
	ClassProgress uint8
	Grade         uint8
	GrowthPoints  uint16
	Potential     HorsePotential
	LuckState     uint8
	Mastery       HorseMastery
	Emblem        uint32
}

type HorsePotential struct {
	Type  uint8
	Level uint8
}

type Item struct {
	Uid   uint32
	Tid   uint32
	Count uint32
}

// BuildCharacter fills the wire character from a snapshot.
func BuildCharacter(dst *Character, c model.Character) {
	dst.Parts = CharacterParts{
		CharID:        saturate[uint8](uint32(c.Parts.ModelID)),
		MouthSerialID: saturate[uint8](uint32(c.Parts.MouthID)),
		FaceSerialID:  saturate[uint8](uint32(c.Parts.FaceID)),
	}
	dst.Appearance = CharacterAppearance{
		VoiceID:     saturate[uint8](c.Appearance.VoiceID),
		HeadSize:    saturate[uint16](c.Appearance.HeadSize),
		Height:      saturate[uint16](c.Appearance.Height),
		ThighVolume: saturate[uint16](c.Appearance.ThighVolume),
		LegVolume:   saturate[uint16](c.Appearance.LegVolume),
		EmblemID:    saturate[uint16](c.Appearance.EmblemID),
	}
}

// BuildHorse fills the wire horse from a snapshot.
func BuildHorse(dst *Horse, h model.Horse) {
	dst.Uid = uint32(h.Uid)
	dst.Tid = uint32(h.Tid)
	dst.Name = h.Name

	dst.Parts = HorseParts{
		SkinID: saturate[uint8](uint32(h.Parts.SkinTid)),
		ManeID: saturate[uint8](uint32(h.Parts.ManeTid)),
		TailID: saturate[uint8](uint32(h.Parts.TailTid)),
		FaceID: saturate[uint8](uint32(h.Parts.FaceTid)),
	}
	dst.Appearance = HorseAppearance{
		Scale:      saturate[uint8](h.Appearance.Scale),
		LegLength:  saturate[uint8](h.Appearance.LegLength),
		LegVolume:  saturate[uint8](h.Appearance.LegVolume),
		BodyLength: saturate[uint8](h.Appearance.BodyLength),
		BodyVolume: saturate[uint8](h.Appearance.BodyVolume),
	}
	dst.Stats = HorseStats{
		Agility:   h.Stats.Agility,
		Courage:   h.Stats.Courage,
		Rush:      h.Stats.Rush,
		Endurance: h.Stats.Endurance,
		Ambition:  h.Stats.Ambition,
	}
	dst.Mastery = HorseMastery{
		SpurMagicCount:  h.Mastery.SpurMagicCount,
		JumpCount:       h.Mastery.JumpCount,
		SlidingTime:     h.Mastery.SlidingTime,
		GlidingDistance: h.Mastery.GlidingDistance,
	}

	dst.Rating = h.Rating
	dst.Class = h.Class
	dst.ClassProgress = saturate[uint8](h.ClassProgress)
	dst.Grade = h.Grade
	dst.GrowthPoints = h.GrowthPoints
	dst.Potential = HorsePotential{Type: h.PotentialType, Level: h.PotentialLevel}
	dst.LuckState = h.LuckState
	dst.Emblem = uint32(h.EmblemUid)
}

// saturate narrows v to N, clamping at the largest N.
func saturate[N uint8 | uint16](v uint32) N {
	limit := uint32(^N(0))
	if v > limit {
		return N(limit)
	}
	return N(v)
}

// BuildItems appends one wire item per available record, in order.
// Unavailable records are skipped.
func BuildItems(dst *[]Item, items []datadirector.Record[model.Item]) error {
	for _, r := range items {
		if !r.IsAvailable() {
			continue
		}
		err := r.Immutable(func(item model.Item) error {
			*dst = append(*dst, Item{
				Uid:   uint32(item.Uid),
				Tid:   uint32(item.Tid),
				Count: item.Count,
			})
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
