package upload

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"

	"github.com/balebuild/bale/logger"
	"github.com/balebuild/bale/util"
)

var force = false

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "upload <src> <s3url>",
	Short: "Upload a repository or artifact tree to S3",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcBase, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		dstURL := util.GetS3URL(args[1])
		if dstURL == nil {
			return fmt.Errorf("destination is not an s3+http(s) URL: %s", args[1])
		}
		mc, err := util.GetS3Client(dstURL)
		if err != nil {
			return err
		}
		bucketName, prefix := util.SplitBucketPath(dstURL)
		if bucketName == "" {
			return fmt.Errorf("no bucket in URL: %s", args[1])
		}

		uploaded := 0
		skipped := 0
		err = filepath.Walk(srcBase, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(srcBase, path)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(filepath.Join(prefix, rel))

			if !force {
				stats, err := mc.StatObject(cmd.Context(), bucketName, key, minio.StatObjectOptions{})
				if err == nil && stats.Size == info.Size() {
					logger.Debug("Skipping, already uploaded", "key", key, "size", stats.Size)
					skipped++
					return nil
				}
				errResponse := minio.ToErrorResponse(err)
				if err != nil && errResponse.Code != "NoSuchKey" {
					logger.Debug("Stat failed, uploading anyway", "key", key, "error", err)
				}
			}

			logger.Info("Uploading", "key", key, "size", info.Size())
			_, err = mc.FPutObject(cmd.Context(), bucketName, key, path, minio.PutObjectOptions{})
			if err == nil {
				uploaded++
			}
			return err
		})
		if err != nil {
			return err
		}
		logger.Info("Upload complete", "uploaded", uploaded, "skipped", skipped)
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.BoolVarP(&force, "force", "f", force, "Upload even when the object already exists")
}
