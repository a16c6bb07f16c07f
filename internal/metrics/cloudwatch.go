package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/btc-maxpain/internal/logger"
	"github.com/yourorg/btc-maxpain/internal/model"
)

// maxDatumsPerCall keeps each PutMetricData request small
const maxDatumsPerCall = 20

// CloudWatchAPI is the subset of the CloudWatch client used here.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchSink publishes report levels as custom metrics.
type CloudWatchSink struct {
	client    CloudWatchAPI
	namespace string
	log       logrus.FieldLogger
}

func NewCloudWatchSink(client CloudWatchAPI, namespace string, log logrus.FieldLogger) *CloudWatchSink {
	return &CloudWatchSink{
		client:    client,
		namespace: namespace,
		log:       logger.Component(log, "cloudwatch"),
	}
}

func (s *CloudWatchSink) Name() string { return "cloudwatch" }

// Export publishes the index price and the per-timeframe levels.
func (s *CloudWatchSink) Export(ctx context.Context, rep *model.Report) error {
	data := Datums(rep)

	for start := 0; start < len(data); start += maxDatumsPerCall {
		end := start + maxDatumsPerCall
		if end > len(data) {
			end = len(data)
		}
		if _, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(s.namespace),
			MetricData: data[start:end],
		}); err != nil {
			return fmt.Errorf("publish CloudWatch metrics: %w", err)
		}
	}

	s.log.WithField("datums", len(data)).Debug("Published metrics to CloudWatch")
	return nil
}

// Datums converts rep into CloudWatch metric data stamped with the report time.
func Datums(rep *model.Report) []cwtypes.MetricDatum {
	ts := aws.Time(time.Unix(rep.Timestamp, 0).UTC())

	data := []cwtypes.MetricDatum{{
		MetricName: aws.String("IndexPrice"),
		Unit:       cwtypes.StandardUnitNone,
		Value:      aws.Float64(rep.CurrentPrice),
		Timestamp:  ts,
	}}

	for _, tf := range rep.Timeframes {
		dims := []cwtypes.Dimension{{Name: aws.String("timeframe"), Value: aws.String(tf.Name)}}
		add := func(name string, unit cwtypes.StandardUnit, value float64) {
			data = append(data, cwtypes.MetricDatum{
				MetricName: aws.String(name),
				Dimensions: dims,
				Unit:       unit,
				Value:      aws.Float64(value),
				Timestamp:  ts,
			})
		}
		add("LongMaxPain", cwtypes.StandardUnitNone, tf.Result.LongMaxPain)
		add("ShortMaxPain", cwtypes.StandardUnitNone, tf.Result.ShortMaxPain)
		add("LongDistancePct", cwtypes.StandardUnitPercent, tf.Result.LongDistancePct)
		add("ShortDistancePct", cwtypes.StandardUnitPercent, tf.Result.ShortDistancePct)
		add("DaysUntilExpiry", cwtypes.StandardUnitCount, float64(tf.Result.DaysUntil))
	}
	return data
}
