// Copyright 2025 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package formats

import (
	"github.com/sumfold/sumfold/util"
)

type option = string

const (
	Pretty   option = "pretty"
	JSON     option = "json"
	YAML     option = "yaml"
	Bindings option = "bindings"
	Source   option = "source"
	Discard  option = "discard"
	None     option = "none"
)

// Returns an enum flag for the given formats, where the first provided format
// will be used as the default format.
func Flag(formats ...option) *util.EnumFlag {
	return util.NewEnumFlag(formats[0], formats)
}
