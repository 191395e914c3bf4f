package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
)

// DynamoDBAPI DynamoDB 客户端中本存储用到的方法，便于测试替换.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	ListTables(ctx context.Context, in *dynamodb.ListTablesInput, opts ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

// DynamoDBBackend 基于 DynamoDB 的记录存储，每个逻辑表对应一张 DynamoDB 表，
// 分区键为标识字段，过期依赖表上配置的 ttl 属性.
type DynamoDBBackend struct {
	client DynamoDBAPI
}

// NewDynamoDBBackend 使用默认凭证链（或配置的静态凭证）创建后端.
func NewDynamoDBBackend(ctx context.Context, cfg *configs.StoreConfig) (Backend, error) {
	dc := cfg.DynamoDB

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(dc.Region)}
	if dc.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(dc.AccessKeyID, dc.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if dc.Endpoint != "" {
			o.BaseEndpoint = aws.String(dc.Endpoint)
		}
	})

	return NewDynamoDBBackendFromClient(client), nil
}

// NewDynamoDBBackendFromClient 复用已有客户端.
func NewDynamoDBBackendFromClient(client DynamoDBAPI) *DynamoDBBackend {
	return &DynamoDBBackend{client: client}
}

// Open 打开逻辑表，不检查表是否存在.
func (b *DynamoDBBackend) Open(_ context.Context, table Table) (Store, error) {
	if table.IDField == "" {
		return nil, fmt.Errorf("dynamodb table %s: id field is required", table.Name)
	}

	return &DynamoDBStore{client: b.client, table: table.Name, idField: table.IDField}, nil
}

// Ping 通过 ListTables 检查凭证与连通性.
func (b *DynamoDBBackend) Ping(ctx context.Context) error {
	_, err := b.client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err
}

// Close 客户端无需关闭.
func (b *DynamoDBBackend) Close() error { return nil }

// DynamoDBStore 单张表.
type DynamoDBStore struct {
	client  DynamoDBAPI
	table   string
	idField string
}

func (d *DynamoDBStore) key(id string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		d.idField: &ddbtypes.AttributeValueMemberS{Value: id},
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *ddbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// Get 强一致读取.
func (d *DynamoDBStore) Get(ctx context.Context, id string) (model.Record, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if out.Item == nil {
		return nil, ErrNotFound
	}

	return unmarshalItem(out.Item)
}

// PutIfAbsent 以 attribute_not_exists(标识字段) 作为写入条件.
func (d *DynamoDBStore) PutIfAbsent(ctx context.Context, id string, rec model.Record) error {
	item, err := attributevalue.MarshalMap(map[string]any(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	item[d.idField] = &ddbtypes.AttributeValueMemberS{Value: id}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(d.idField))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.table),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if isConditionalCheckFailed(err) {
		return ErrConditionFailed
	}

	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

// Update 用表达式构建器生成 SET 子句，条件为记录存在，返回 ALL_NEW.
func (d *DynamoDBStore) Update(ctx context.Context, id string, changes []model.Change) (model.Record, error) {
	var update expression.UpdateBuilder

	n := 0

	for _, c := range changes {
		if c.Field == d.idField {
			continue
		}

		update = update.Set(expression.Name(c.Field), expression.Value(c.Value))
		n++
	}

	if n == 0 {
		return d.Get(ctx, id)
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(d.idField))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.table),
		Key:                       d.key(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              ddbtypes.ReturnValueAllNew,
	})
	if isConditionalCheckFailed(err) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	return unmarshalItem(out.Attributes)
}

// Delete 无条件删除.
func (d *DynamoDBStore) Delete(ctx context.Context, id string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.key(id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	return nil
}

// Scan 分页全表扫描，只用于运维命令.
func (d *DynamoDBStore) Scan(ctx context.Context, fn func(id string, rec model.Record) bool) error {
	p := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{TableName: aws.String(d.table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan table: %w", err)
		}

		for _, item := range page.Items {
			rec, err := unmarshalItem(item)
			if err != nil {
				return err
			}

			if !fn(rec.String(d.idField), rec) {
				return nil
			}
		}
	}

	return nil
}

// unmarshalItem 解码条目，数值按是否含小数转换为 int64 或 float64.
func unmarshalItem(item map[string]ddbtypes.AttributeValue) (model.Record, error) {
	var m map[string]any

	err := attributevalue.UnmarshalMapWithOptions(item, &m, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	for k, v := range m {
		m[k] = normalizeNumber(v)
	}

	return model.Record(m), nil
}

func normalizeNumber(v any) any {
	switch t := v.(type) {
	case attributevalue.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			if n, err := t.Int64(); err == nil {
				return n
			}
		}

		if f, err := t.Float64(); err == nil {
			return f
		}

		return string(t)
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumber(e)
		}

		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumber(e)
		}

		return t
	default:
		return v
	}
}

func init() {
	RegisterFactory(configs.StoreDynamoDB, NewDynamoDBBackend)
}
