package storage

import "errors"

var (
	// ErrAuthNotFound: для сервера нет сохранённой сессии
	ErrAuthNotFound = errors.New("no saved session for this server")

	// ErrStorageClosed возвращается после Close
	ErrStorageClosed = errors.New("storage is closed")
)
