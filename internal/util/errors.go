package util

import "errors"

var ErrNoExtractableText = errors.New("no text or figures extracted from PDF")
