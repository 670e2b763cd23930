/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package model

import (
	"slices"
	"time"

	"github.com/go-openapi/strfmt"
)

// User is an account, keyed by its name rather than a Uid.
type User struct {
	Name         string `json:"name"`
	Token        string `json:"token"`
	CharacterUid Uid    `json:"characterUid"`
}

func NewUser(name string) User {
	return User{Name: name}
}

// Role is the privilege level of a character.
type Role uint8

const (
	RoleUser Role = iota
	RolePowerUser
	RoleGameMaster
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RolePowerUser:
		return "power-user"
	case RoleGameMaster:
		return "game-master"
	default:
		return "unknown"
	}
}

type CharacterParts struct {
	ModelID Tid `json:"modelId"`
	MouthID Tid `json:"mouthId"`
	FaceID  Tid `json:"faceId"`
}

type CharacterAppearance struct {
	VoiceID     uint32 `json:"voiceId"`
	HeadSize    uint32 `json:"headSize"`
	Height      uint32 `json:"height"`
	ThighVolume uint32 `json:"thighVolume"`
	LegVolume   uint32 `json:"legVolume"`
	EmblemID    uint32 `json:"emblemId"`
}

// Character holds references to other entities by Uid only. MountUid resolves
// against horses, PetUid and Pets against pets, GuildUid against guilds, and
// Items, CharacterEquipment and MountEquipment against items.
type Character struct {
	Uid           Uid                 `json:"uid"`
	Name          string              `json:"name"`
	Introduction  string              `json:"introduction"`
	Level         uint16              `json:"level"`
	Carrots       int32               `json:"carrots"`
	Cash          uint32              `json:"cash"`
	Role          Role                `json:"role"`
	Parts         CharacterParts      `json:"parts"`
	Appearance    CharacterAppearance `json:"appearance"`
	IsRanchLocked bool                `json:"isRanchLocked"`

	MountUid           Uid   `json:"mountUid"`
	PetUid             Uid   `json:"petUid"`
	GuildUid           Uid   `json:"guildUid"`
	Horses             []Uid `json:"horses"`
	Pets               []Uid `json:"pets"`
	Items              []Uid `json:"items"`
	CharacterEquipment []Uid `json:"characterEquipment"`
	MountEquipment     []Uid `json:"mountEquipment"`
}

func NewCharacter(uid Uid) Character {
	return Character{Uid: uid}
}

// Clone returns a copy that shares no slices with c.
func (c Character) Clone() Character {
	c.Horses = slices.Clone(c.Horses)
	c.Pets = slices.Clone(c.Pets)
	c.Items = slices.Clone(c.Items)
	c.CharacterEquipment = slices.Clone(c.CharacterEquipment)
	c.MountEquipment = slices.Clone(c.MountEquipment)
	return c
}

type HorseParts struct {
	SkinTid Tid `json:"skinTid"`
	FaceTid Tid `json:"faceTid"`
	ManeTid Tid `json:"maneTid"`
	TailTid Tid `json:"tailTid"`
}

type HorseAppearance struct {
	Scale      uint32 `json:"scale"`
	LegLength  uint32 `json:"legLength"`
	LegVolume  uint32 `json:"legVolume"`
	BodyLength uint32 `json:"bodyLength"`
	BodyVolume uint32 `json:"bodyVolume"`
}

type HorseStats struct {
	Agility   uint32 `json:"agility"`
	Courage   uint32 `json:"courage"`
	Rush      uint32 `json:"rush"`
	Endurance uint32 `json:"endurance"`
	Ambition  uint32 `json:"ambition"`
}

type HorseMastery struct {
	SpurMagicCount  uint32 `json:"spurMagicCount"`
	JumpCount       uint32 `json:"jumpCount"`
	SlidingTime     uint32 `json:"slidingTime"`
	GlidingDistance uint32 `json:"glidingDistance"`
}

type Horse struct {
	Uid            Uid             `json:"uid"`
	Tid            Tid             `json:"tid"`
	Name           string          `json:"name"`
	Parts          HorseParts      `json:"parts"`
	Appearance     HorseAppearance `json:"appearance"`
	Stats          HorseStats      `json:"stats"`
	Mastery        HorseMastery    `json:"mastery"`
	Rating         uint32          `json:"rating"`
	Class          uint8           `json:"class"`
	ClassProgress  uint32          `json:"classProgress"`
	Grade          uint8           `json:"grade"`
	GrowthPoints   uint16          `json:"growthPoints"`
	PotentialType  uint8           `json:"potentialType"`
	PotentialLevel uint8           `json:"potentialLevel"`
	LuckState      uint8           `json:"luckState"`
	EmblemUid      Uid             `json:"emblemUid"`
}

func NewHorse(uid Uid) Horse {
	return Horse{Uid: uid}
}

// Slot is where an item is equipped, if anywhere.
type Slot uint32

const (
	SlotNone Slot = iota
	SlotCharacterHead
	SlotCharacterTop
	SlotCharacterBottom
	SlotCharacterShoes
	SlotCharacterGlove
	SlotMountHead
	SlotMountBody
	SlotMountLegs
	SlotMountTail
)

type Item struct {
	Uid   Uid    `json:"uid"`
	Tid   Tid    `json:"tid"`
	Count uint32 `json:"count"`
	Slot  Slot   `json:"slot"`
}

func NewItem(uid Uid) Item {
	return Item{Uid: uid}
}

// Pet is backed by the item it was obtained as.
type Pet struct {
	Uid     Uid    `json:"uid"`
	Name    string `json:"name"`
	ItemUid Uid    `json:"itemUid"`
	PetID   uint32 `json:"petId"`
}

func NewPet(uid Uid) Pet {
	return Pet{Uid: uid}
}

type Egg struct {
	Uid    Uid `json:"uid"`
	Tid    Tid `json:"tid"`
	PetTid Tid `json:"petTid"`
}

func NewEgg(uid Uid) Egg {
	return Egg{Uid: uid}
}

type Guild struct {
	Uid  Uid    `json:"uid"`
	Name string `json:"name"`
}

func NewGuild(uid Uid) Guild {
	return Guild{Uid: uid}
}

// Ranch is the named homestead a character owns.
type Ranch struct {
	Uid  Uid    `json:"uid"`
	Name string `json:"name"`
}

func NewRanch(uid Uid) Ranch {
	return Ranch{Uid: uid}
}

type Housing struct {
	Uid        Uid    `json:"uid"`
	HousingID  uint16 `json:"housingId"`
	Durability uint32 `json:"durability"`
}

func NewHousing(uid Uid) Housing {
	return Housing{Uid: uid}
}

// StorageItem is a mail or delivery entry carrying items by Uid.
type StorageItem struct {
	Uid       Uid             `json:"uid"`
	Sender    string          `json:"sender"`
	Message   string          `json:"message"`
	Checked   bool            `json:"checked"`
	Expired   bool            `json:"expired"`
	CreatedAt strfmt.DateTime `json:"createdAt"`
	Items     []Uid           `json:"items"`
}

// Clone returns a copy that shares no slices with s.
func (s StorageItem) Clone() StorageItem {
	s.Items = slices.Clone(s.Items)
	return s
}

func NewStorageItem(uid Uid) StorageItem {
	return StorageItem{
		Uid:       uid,
		CreatedAt: strfmt.DateTime(time.Now().UTC()),
	}
}
