package require

import "fmt"

func formatErr(err error) string {
	return fmt.Sprintf("%+v", err)
}
