// Package store provee el KV store efímero usado para stage de payloads de
// entrega (delivery tokens).
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//   - Postgres (cuando ya hay una base relacional en la infraestructura)
//
// Cada key se escribe una sola vez, se lee cualquier cantidad de veces y
// expira por TTL; no hay read-modify-write.
package store

import (
	"context"
	"time"
)

// Store define las operaciones del KV store.
type Store interface {
	// Set guarda un valor con TTL. Si ttl es 0, no expira.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// PurgeExpired elimina entradas expiradas. Los backends que expiran
	// server-side (Redis) lo implementan como no-op.
	PurgeExpired(ctx context.Context) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un store.
type Config struct {
	Driver string // "memory" | "redis" | "postgres"

	Redis struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	Postgres struct {
		DSN string
	}

	Memory struct {
		PurgeInterval time.Duration
	}
}

// Errores de store.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "store: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un store según la configuración.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "postgres":
		return NewPostgres(ctx, cfg.Postgres.DSN)
	case "memory", "":
		return NewMemory(cfg.Memory.PurgeInterval), nil
	default:
		return NewMemory(cfg.Memory.PurgeInterval), nil
	}
}
