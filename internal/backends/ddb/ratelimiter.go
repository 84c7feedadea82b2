package ddb

import (
	"context"
	"time"

	"pinrelay/internal/types"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// RateLimiter implements ports.RateLimiter with one counter item per (scope, window bucket).
// Items carry a ttl attribute; enable TTL on the table to have DynamoDB reap them.
type RateLimiter struct {
	table string
	cli   API
	now   func() time.Time
}

func NewRateLimiter(table string, cli API) *RateLimiter {
	return &RateLimiter{table: table, cli: cli, now: time.Now}
}

func (l *RateLimiter) Acquire(ctx context.Context, scope string, ratePerWindow int, window time.Duration) (bool, error) {
	if ratePerWindow <= 0 || window <= 0 {
		return false, nil
	}
	now := l.now()
	bucket := now.UnixNano() / int64(window)
	ttl := now.Add(window + 2*time.Minute).Unix() // grace to ensure cleanup

	// Atomic: ADD count 1, set ttl if absent, condition count < capacity.
	// If item does not exist: count starts at 0 then add 1 -> becomes 1.
	_, err := l.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &l.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkRate(scope)},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skRateWin(bucket)},
		},
		UpdateExpression: awsString("SET #ttl = if_not_exists(#ttl, :ttl) ADD #count :one"),
		ExpressionAttributeNames: map[string]string{
			"#count": "count",
			"#ttl":   "ttl",
		},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":one": &ddbTypes.AttributeValueMemberN{Value: "1"},
			":ttl": &ddbTypes.AttributeValueMemberN{Value: itoa(ttl)},
			":cap": &ddbTypes.AttributeValueMemberN{Value: itoa(int64(ratePerWindow))},
		},
		ConditionExpression: awsString("attribute_not_exists(#count) OR #count < :cap"),
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errorAs(err, &cc) {
			return false, nil
		}
		return false, types.Err(types.ErrDataStoreAccess, err, "acquire %s", scope)
	}
	return true, nil
}
