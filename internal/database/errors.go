package database

import "errors"

var (
	// ErrSlotNotFound означает, что слот с таким ID не существует
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotNotAvailable guard не прошёл, слот уже занят или отменён
	ErrSlotNotAvailable = errors.New("slot not available")

	// ErrConcurrentModification версия строки изменилась между чтением и записью
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrPastDate дата бронирования в прошлом
	ErrPastDate = errors.New("booking date is in the past")

	// ErrDateTooFar дата бронирования дальше разрешённого окна
	ErrDateTooFar = errors.New("booking date is too far in the future")

	// ErrSchemaMismatch таблица слотов не содержит ожидаемых колонок
	ErrSchemaMismatch = errors.New("slot table schema mismatch")
)
