package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalog-site/internal/backend"
)

var (
	contactName    string
	contactEmail   string
	contactCompany string
	contactMessage string
)

var browseJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List open career postings",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := siteClient()
		if err != nil {
			return err
		}
		jobs, err := client.Jobs(cmd.Context())
		if err != nil {
			return err
		}
		printJobs(os.Stdout, jobs)
		return nil
	},
}

var browseContactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Send a message through the contact form",
	Example: `  catalogsite browse contact --name "Ada" --email ada@example.com \
    --message "Please quote 20 relief valves"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sub := backend.ContactSubmission{
			Name:    strings.TrimSpace(contactName),
			Email:   strings.TrimSpace(contactEmail),
			Company: strings.TrimSpace(contactCompany),
			Message: strings.TrimSpace(contactMessage),
		}
		if sub.Name == "" || sub.Email == "" || sub.Message == "" {
			return fmt.Errorf("--name, --email and --message must not be blank")
		}

		client, err := siteClient()
		if err != nil {
			return err
		}
		stored, err := client.SubmitContact(cmd.Context(), sub)
		if err != nil {
			return err
		}
		fmt.Printf("Message sent (reference %s).\n", stored.ID)
		return nil
	},
}

func siteClient() (*backend.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newBackendClient(cfg, browseAPI)
}

func printJobs(w io.Writer, jobs []backend.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No open positions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tDEPARTMENT\tLOCATION")
	for _, j := range jobs {
		loc := j.Location
		if loc == "" {
			loc = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", j.Title, j.Department, loc)
	}
	tw.Flush()
}

func init() {
	browseContactCmd.Flags().StringVar(&contactName, "name", "", "Your name")
	browseContactCmd.Flags().StringVar(&contactEmail, "email", "", "Reply address")
	browseContactCmd.Flags().StringVar(&contactCompany, "company", "", "Company (optional)")
	browseContactCmd.Flags().StringVar(&contactMessage, "message", "", "Message body")
	for _, f := range []string{"name", "email", "message"} {
		browseContactCmd.MarkFlagRequired(f)
	}
	browseCmd.AddCommand(browseJobsCmd, browseContactCmd)
}
