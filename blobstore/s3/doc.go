// Package s3 provides blob stores backed by Amazon S3.
//
// Store reads with ranged GETs and writes through the multipart upload
// manager. DDBCommitStore wraps any blob store and moves the CURRENT
// pointer into a DynamoDB table, where a conditional write turns each
// snapshot publish into a compare-and-swap.
package s3
