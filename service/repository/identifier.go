/*
 * @module service/repository/identifier
 * @description 记录标识：原始字符串与 ObjectID 两种形态，按方言转换
 * @architecture 和类型 - RawID / NativeID
 * @rules 文档型方言把 24 位十六进制串转为 ObjectID；转换失败返回 INVALID_IDENTIFIER
 * @dependencies go.mongodb.org/mongo-driver/v2/bson, github.com/spf13/cast
 * @refs service/repository/query_builder.go, service/schema/facade.go
 */

package repository

import (
	"fmt"

	"contractstore-service/service/database"
	apperrors "contractstore-service/service/errors"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Identifier 记录标识：关系型方言为原始字符串，文档型方言为 ObjectID
type Identifier interface {
	// Value 驱动可直接使用的值
	Value() interface{}
	String() string
	isIdentifier()
}

// RawID 字符串主键
type RawID string

// NativeID 文档库原生标识
type NativeID bson.ObjectID

func (id RawID) Value() interface{} { return string(id) }
func (id RawID) String() string     { return string(id) }
func (RawID) isIdentifier()         {}

func (id NativeID) Value() interface{} { return bson.ObjectID(id) }
func (id NativeID) String() string     { return bson.ObjectID(id).Hex() }
func (NativeID) isIdentifier()         {}

// IDFieldName 方言的主键字段名
func IDFieldName(d database.Dialect) string {
	if d.IsDocument() {
		return "_id"
	}
	return "id"
}

// CoerceID 将任意值转换为方言的标识，已是目标形态时原样返回
func CoerceID(d database.Dialect, v interface{}) (Identifier, error) {
	if d.IsDocument() {
		return coerceNative(v)
	}
	return coerceRaw(v)
}

func coerceNative(v interface{}) (Identifier, error) {
	switch id := v.(type) {
	case NativeID:
		return id, nil
	case bson.ObjectID:
		return NativeID(id), nil
	case *bson.ObjectID:
		if id == nil {
			return nil, apperrors.NewInvalidIdentifier(v, nil)
		}
		return NativeID(*id), nil
	case RawID:
		return coerceNative(string(id))
	case string:
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			return nil, apperrors.NewInvalidIdentifier(id, err)
		}
		return NativeID(oid), nil
	default:
		return nil, apperrors.NewInvalidIdentifier(v, fmt.Errorf("不支持的标识类型 %T", v))
	}
}

func coerceRaw(v interface{}) (Identifier, error) {
	switch id := v.(type) {
	case RawID:
		return id, nil
	case NativeID:
		return RawID(id.String()), nil
	case bson.ObjectID:
		return RawID(id.Hex()), nil
	case nil:
		return nil, apperrors.NewInvalidIdentifier(v, nil)
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, apperrors.NewInvalidIdentifier(v, err)
	}
	return RawID(s), nil
}
