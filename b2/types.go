package b2

import (
	"io"
	"net/http"
)

type authorizeResponse struct {
	AccountID          string         `json:"accountId"`
	AuthorizationToken string         `json:"authorizationToken"`
	APIURL             string         `json:"apiUrl"`
	DownloadURL        string         `json:"downloadUrl"`
	Allowed            *allowedBucket `json:"allowed"`
}

type allowedBucket struct {
	BucketID   *string `json:"bucketId"`
	BucketName *string `json:"bucketName"`
}

type listBucketsRequest struct {
	AccountID  string `json:"accountId"`
	BucketName string `json:"bucketName"`
}

type listBucketsResponse struct {
	Buckets []struct {
		BucketID   string `json:"bucketId"`
		BucketName string `json:"bucketName"`
	} `json:"buckets"`
}

type listFileNamesRequest struct {
	BucketID     string `json:"bucketId"`
	Prefix       string `json:"prefix"`
	Delimiter    string `json:"delimiter"`
	MaxFileCount int    `json:"maxFileCount"`
}

type listFileNamesResponse struct {
	Files []fileInfo `json:"files"`
}

type fileInfo struct {
	FileName        string `json:"fileName"`
	Action          string `json:"action"`
	ContentLength   int64  `json:"contentLength"`
	UploadTimestamp int64  `json:"uploadTimestamp"`
}

// Object is a successful download. The caller must close Body.
type Object struct {
	StatusCode    int
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
}
