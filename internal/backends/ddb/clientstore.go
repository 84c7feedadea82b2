package ddb

import (
	"context"
	"errors"
	"time"

	"pinrelay/internal/pin"
	"pinrelay/internal/types"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const maxCASRetries = 20

// ClientStore keeps one item per client in a PK/SK table: PK=CLIENT#<key>, SK=PROFILE.
// PIN writes are single conditional UpdateItem calls, which DynamoDB applies atomically per item.
type ClientStore struct {
	table string
	cli   API
	now   func() time.Time
}

// NewClientStore returns a store over table. The table must exist, see CreateTableIfNotExists.
func NewClientStore(table string, cli API) *ClientStore {
	return &ClientStore{table: table, cli: cli, now: time.Now}
}

func (s *ClientStore) key(clientKey string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pkClient(clientKey)},
		"SK": &ddbTypes.AttributeValueMemberS{Value: skProfile()},
	}
}

func (s *ClientStore) GetClient(ctx context.Context, clientKey string) (types.Client, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            s.key(clientKey),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.Client{}, types.Err(types.ErrDataStoreAccess, err, "get client %s", clientKey)
	}
	if out.Item == nil {
		return types.Client{}, types.ErrNotFound
	}
	var c types.Client
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return types.Client{}, types.Err(types.ErrDataStoreAccess, err, "decode client %s", clientKey)
	}
	return c, nil
}

func (s *ClientStore) ListClients(ctx context.Context) (map[string]types.Client, error) {
	clients := make(map[string]types.Client)
	p := dynamodb.NewScanPaginator(s.cli, &dynamodb.ScanInput{
		TableName:        &s.table,
		FilterExpression: awsString("begins_with(PK, :pk) AND SK = :sk"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: clientKeyPrefix()},
			":sk": &ddbTypes.AttributeValueMemberS{Value: skProfile()},
		},
		ConsistentRead: awsBool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, types.Err(types.ErrDataStoreAccess, err, "list clients")
		}
		for _, item := range page.Items {
			var c types.Client
			if err := attributevalue.UnmarshalMap(item, &c); err != nil {
				return nil, types.Err(types.ErrDataStoreAccess, err, "decode client")
			}
			clients[c.Key] = c
		}
	}
	return clients, nil
}

// PutClient writes the record with compare-and-set on pin_ver so it never rolls back a PIN
// written concurrently by UpdatePin.
func (s *ClientStore) PutClient(ctx context.Context, client types.Client) error {
	if err := client.Validate(); err != nil {
		return types.Err(types.ErrInvalidClient, err, "")
	}
	for i := 0; i < maxCASRetries; i++ {
		now := s.now().Unix()
		next := client
		next.UpdatedAt = now

		in := &dynamodb.PutItemInput{TableName: &s.table}
		prev, err := s.GetClient(ctx, client.Key)
		switch {
		case errors.Is(err, types.ErrNotFound):
			next.PinVersion = 0
			if next.Pin != "" {
				next.PinVersion = 1
				next.PinUpdatedAt = now
			}
			if next.CreatedAt == 0 {
				next.CreatedAt = now
			}
			in.ConditionExpression = awsString("attribute_not_exists(PK)")
		case err != nil:
			return err
		default:
			next.CreatedAt = prev.CreatedAt
			next.PinVersion = prev.PinVersion
			next.PinUpdatedAt = prev.PinUpdatedAt
			if next.Pin != prev.Pin {
				next.PinVersion++
				next.PinUpdatedAt = now
			}
			in.ConditionExpression = awsString("#ver = :prev")
			in.ExpressionAttributeNames = map[string]string{"#ver": "pin_ver"}
			in.ExpressionAttributeValues = map[string]ddbTypes.AttributeValue{
				":prev": &ddbTypes.AttributeValueMemberN{Value: itoa(prev.PinVersion)},
			}
		}

		item, err := attributevalue.MarshalMap(struct {
			PK string `dynamodbav:"PK"`
			SK string `dynamodbav:"SK"`
			types.Client
		}{
			PK:     pkClient(client.Key),
			SK:     skProfile(),
			Client: next,
		})
		if err != nil {
			return err
		}
		in.Item = item

		_, err = s.cli.PutItem(ctx, in)
		if err == nil {
			return nil
		}
		var cc *ddbTypes.ConditionalCheckFailedException
		if !errorAs(err, &cc) {
			return types.Err(types.ErrDataStoreAccess, err, "put client %s", client.Key)
		}
	}
	return types.Err(types.ErrPrecondition, nil, "put client %s: too much contention", client.Key)
}

func (s *ClientStore) UpdatePin(ctx context.Context, clientKey, newPin string) (int64, error) {
	if !pin.Valid(newPin) {
		return 0, types.Err(types.ErrInvalidClient, nil, "pin must be exactly %d digits", pin.Length)
	}
	now := itoa(s.now().Unix())
	out, err := s.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.table,
		Key:                 s.key(clientKey),
		ConditionExpression: awsString("attribute_exists(PK)"),
		UpdateExpression:    awsString("SET #pin = :pin, #pua = :now, #ua = :now ADD #ver :one"),
		ExpressionAttributeNames: map[string]string{
			"#pin": "pin",
			"#pua": "pin_updated_at",
			"#ua":  "updated_at",
			"#ver": "pin_ver",
		},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pin": &ddbTypes.AttributeValueMemberS{Value: newPin},
			":now": &ddbTypes.AttributeValueMemberN{Value: now},
			":one": &ddbTypes.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: ddbTypes.ReturnValueUpdatedNew,
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errorAs(err, &cc) {
			return 0, types.ErrNotFound
		}
		return 0, types.Err(types.ErrDataStoreAccess, err, "update pin %s", clientKey)
	}
	var updated struct {
		PinVersion int64 `dynamodbav:"pin_ver"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, types.Err(types.ErrDataStoreAccess, err, "decode pin version %s", clientKey)
	}
	return updated.PinVersion, nil
}

// ClearAll deletes every client item. Rate-limit items in the same table expire on their own.
func (s *ClientStore) ClearAll(ctx context.Context) error {
	clients, err := s.ListClients(ctx)
	if err != nil {
		return err
	}
	for key := range clients {
		_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: &s.table,
			Key:       s.key(key),
		})
		if err != nil {
			return types.Err(types.ErrDataStoreAccess, err, "delete client %s", key)
		}
	}
	return nil
}

