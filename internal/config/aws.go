package config

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// LoadAWS loads the default AWS configuration chain pinned to region.
func LoadAWS(ctx context.Context, region string) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

// LocalCredentials are static credentials accepted by local AWS emulators
// (DDB_ENDPOINT / SNS_ENDPOINT overrides).
func LocalCredentials() aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(
		getenv("AWS_ACCESS_KEY_ID", "x"),
		getenv("AWS_SECRET_ACCESS_KEY", "x"),
		"",
	)
}
