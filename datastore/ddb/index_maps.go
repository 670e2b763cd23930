/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"github.com/storyofalicia/datadirector/model"
	"github.com/storyofalicia/datadirector/registry"
)

func uidIndexMap(prefix string) map[string]string {
	return map[string]string{
		registry.PartitionKey: prefix + "#{uid}",
		registry.SortKey:      prefix + "#{uid}",
	}
}

func init() {
	registry.MustRegisterIndexMap[model.User](map[string]string{
		registry.PartitionKey: "USER#{name}",
		registry.SortKey:      "USER#{name}",
	})
	registry.MustRegisterIndexMap[model.Character](uidIndexMap("CHARACTER"))
	registry.MustRegisterIndexMap[model.Horse](uidIndexMap("HORSE"))
	registry.MustRegisterIndexMap[model.Item](uidIndexMap("ITEM"))
	registry.MustRegisterIndexMap[model.Pet](uidIndexMap("PET"))
	registry.MustRegisterIndexMap[model.Egg](uidIndexMap("EGG"))
	registry.MustRegisterIndexMap[model.Guild](uidIndexMap("GUILD"))
	registry.MustRegisterIndexMap[model.Housing](uidIndexMap("HOUSING"))
	registry.MustRegisterIndexMap[model.StorageItem](uidIndexMap("STORAGEITEM"))
	registry.MustRegisterIndexMap[model.Ranch](uidIndexMap("RANCH"))
}
