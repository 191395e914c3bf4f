// Package model 定义用户与资源两类记录的形状及派生字段.
package model

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/yeisme/assetvault/pkg/rule"
)

// 记录中的派生字段名.
const (
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
	FieldTTL         = "ttl"
	FieldS3Key       = "s3Key"
	FieldS3Bucket    = "s3Bucket"
	FieldStatus      = "status"
	FieldContentType = "contentType"
	FieldFileName    = "fileName"
	FieldEmail       = "email"
)

const (
	// DefaultContentType 未提供 contentType 时使用.
	DefaultContentType = "application/octet-stream"
	// StatusPending 资源创建后的初始状态，本服务不再推进.
	StatusPending = "pending"
)

// Env 派生字段依赖的部署配置.
type Env struct {
	AssetsBucket string
}

// Kind 描述一类记录：标识字段、必填字段、保留时长与额外派生规则.
type Kind struct {
	Name      string
	IDField   string
	Required  []string
	Retention time.Duration

	derive func(rec Record, env Env)
}

const assetIDField = "assetId"

// User 用户记录，保留 90 天.
var User = Kind{
	Name:      "user",
	IDField:   "userId",
	Required:  []string{FieldEmail},
	Retention: 90 * 24 * time.Hour,
}

// Asset 资源元数据记录，保留 30 天.
var Asset = Kind{
	Name:      "asset",
	IDField:   assetIDField,
	Required:  []string{FieldFileName},
	Retention: 30 * 24 * time.Hour,
	derive:    deriveAsset,
}

// Kinds 按名称索引的全部记录类型.
var Kinds = map[string]Kind{
	User.Name:  User,
	Asset.Name: Asset,
}

// RetentionSeconds 返回保留时长的秒数.
func (k Kind) RetentionSeconds() int64 {
	return int64(k.Retention / time.Second)
}

// Validate 检查创建输入，返回缺失的字段与类型不是字符串的字段.
// 标识字段总是排在第一位.
func (k Kind) Validate(input map[string]any) (missing, invalid []string) {
	fields := append([]string{k.IDField}, k.Required...)

	missing = rule.MissingFields(input, fields...)

	for _, f := range fields {
		if slices.Contains(missing, f) {
			continue
		}

		if _, ok := input[f].(string); !ok {
			invalid = append(invalid, f)
		}
	}

	return missing, invalid
}

// New 由创建输入构造记录：输入字段原样复制，再写入派生字段（覆盖同名输入）.
// 调用前须先通过 Validate.
func (k Kind) New(input map[string]any, now time.Time, env Env) Record {
	rec := make(Record, len(input)+6)
	maps.Copy(rec, input)

	ts := now.Unix()
	rec[FieldCreatedAt] = ts
	rec[FieldTTL] = ts + k.RetentionSeconds()

	if k.derive != nil {
		k.derive(rec, env)
	}

	return rec
}

// Changes 把更新请求体转换为有序的修改列表，丢弃标识字段，并追加 updatedAt.
func (k Kind) Changes(body map[string]any, now time.Time) []Change {
	keys := slices.Sorted(maps.Keys(body))

	changes := make([]Change, 0, len(keys)+1)
	for _, f := range keys {
		if f == k.IDField || f == FieldUpdatedAt || f == "" {
			continue
		}

		changes = append(changes, Change{Field: f, Value: body[f]})
	}

	return append(changes, Change{Field: FieldUpdatedAt, Value: now.Unix()})
}

// ObjectKey 返回资源在对象存储中的键.
func ObjectKey(assetID, fileName string) string {
	return fmt.Sprintf("assets/%s/%s", assetID, fileName)
}

func deriveAsset(rec Record, env Env) {
	if ct, _ := rec[FieldContentType].(string); ct == "" {
		rec[FieldContentType] = DefaultContentType
	}

	rec[FieldS3Key] = ObjectKey(rec.String(assetIDField), rec.String(FieldFileName))
	rec[FieldS3Bucket] = env.AssetsBucket
	rec[FieldStatus] = StatusPending
}
