package repo

import "errors"

// ErrNotFound — запись не найдена в журнале.
var ErrNotFound = errors.New("not found")
