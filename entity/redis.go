package entity

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	redis "github.com/go-redis/redis/v8"
	"github.com/leeforge/icons/env_mode"
	"github.com/leeforge/icons/logging"
	"go.uber.org/zap"
)

type RedisConfig struct {
	Host      string `mapstructure:"host" json:"host" yaml:"host" default:"localhost"`
	Port      string `mapstructure:"port" json:"port" yaml:"port" default:"6379"`
	Password  string `mapstructure:"password" json:"password" yaml:"password"`
	DB        int    `mapstructure:"db" json:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key-prefix" json:"key-prefix" yaml:"key-prefix" default:"entity:"`
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cnf RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cnf.Addr(),
		Password: cnf.Password,
		DB:       cnf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	if env_mode.Mode() == env_mode.DevMode {
		logging.FromContext(ctx).Info("redis connected",
			zap.String("addr", cnf.Addr()),
			zap.Int("db", cnf.DB),
			zap.String("password", redactedPassword(cnf.Password)),
		)
	}
	return client, nil
}

func redactedPassword(password string) string {
	if password == "" {
		return "<empty>"
	}
	return "[REDACTED]"
}

// Hash fields. Attributes are stored alongside with the attrPrefix.
const (
	fieldKind            = "kind"
	fieldSubtype         = "subtype"
	fieldOwner           = "owner_guid"
	fieldMime            = "mime_type"
	fieldHidden          = "hidden"
	fieldContentOwner    = "content_owner"
	fieldContentFilename = "content_filename"
	attrPrefix           = "attr:"
)

// RedisStore keeps one hash per entity at <prefix><guid>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "entity:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(guid int64) string {
	return s.prefix + strconv.FormatInt(guid, 10)
}

func (s *RedisStore) Get(ctx context.Context, guid int64) (*Entity, error) {
	fields, err := s.client.HGetAll(ctx, s.key(guid)).Result()
	if err != nil {
		return nil, fmt.Errorf("load entity %d: %w", guid, err)
	}
	if len(fields) == 0 {
		return nil, notFound(guid)
	}

	e, err := decodeHash(guid, fields)
	if err != nil {
		return nil, err
	}
	if err := checkVisible(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *RedisStore) Put(ctx context.Context, e *Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	key := s.key(e.GUID)
	values := encodeHash(e)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store entity %d: %w", e.GUID, err)
	}
	return nil
}

// SetAttributes merges attrs into the entity hash. The write is guarded by
// WATCH so a concurrent delete cannot resurrect a partial hash.
func (s *RedisStore) SetAttributes(ctx context.Context, guid int64, attrs Attributes) error {
	if err := validateAttributes(attrs); err != nil {
		return err
	}
	if len(attrs) == 0 {
		return nil
	}
	key := s.key(guid)
	values := make(map[string]any, len(attrs))
	for name, v := range attrs {
		values[attrPrefix+name] = v
	}

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(guid)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			return nil
		})
		return err
	}, key)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeHash(e *Entity) map[string]any {
	values := map[string]any{
		fieldKind:    string(e.Kind),
		fieldSubtype: e.Subtype,
		fieldOwner:   strconv.FormatInt(e.OwnerGUID, 10),
		fieldMime:    e.MimeType,
		fieldHidden:  strconv.FormatBool(e.Hidden),
	}
	if e.Content != nil {
		values[fieldContentOwner] = strconv.FormatInt(e.Content.Owner, 10)
		values[fieldContentFilename] = e.Content.Filename
	}
	for name, v := range e.Attributes {
		values[attrPrefix+name] = v
	}
	return values
}

func decodeHash(guid int64, fields map[string]string) (*Entity, error) {
	e := &Entity{
		GUID:       guid,
		Kind:       Kind(fields[fieldKind]),
		Subtype:    fields[fieldSubtype],
		MimeType:   fields[fieldMime],
		Attributes: Attributes{},
	}

	var err error
	if v := fields[fieldOwner]; v != "" {
		if e.OwnerGUID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("entity %d: bad owner_guid %q", guid, v)
		}
	}
	if v := fields[fieldHidden]; v != "" {
		if e.Hidden, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("entity %d: bad hidden flag %q", guid, v)
		}
	}
	if name := fields[fieldContentFilename]; name != "" {
		owner, err := strconv.ParseInt(fields[fieldContentOwner], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entity %d: bad content_owner %q", guid, fields[fieldContentOwner])
		}
		e.Content = &StoredFile{Owner: owner, Filename: name}
	}
	for k, v := range fields {
		if name, ok := strings.CutPrefix(k, attrPrefix); ok {
			e.Attributes[name] = v
		}
	}
	return e, nil
}
