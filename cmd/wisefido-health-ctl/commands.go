package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"wisefido-health/internal/models"
	"wisefido-health/internal/report"
	"wisefido-health/internal/service"

	"github.com/spf13/cobra"
)

func resolveAlertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve-alert",
		Short: "Resolve an active alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			alertID, _ := cmd.Flags().GetString("alert-id")
			by, _ := cmd.Flags().GetString("by")
			patientID, _ := cmd.Flags().GetString("patient")

			return withMonitor(cmd, func(ctx context.Context, monitor *service.MonitorService) error {
				alert, err := monitor.ResolveAlert(ctx, alertID, by, patientID)
				if err != nil {
					if models.IsAlreadyResolved(err) {
						fmt.Fprintf(cmd.ErrOrStderr(), "alert %s is already resolved\n", alertID)
						return nil
					}
					return err
				}
				return printJSON(cmd, alert)
			})
		},
	}
	cmd.Flags().String("alert-id", "", "Alert identifier")
	cmd.Flags().String("by", "", "Clinician identifier")
	cmd.Flags().String("patient", "", "Only resolve if the alert belongs to this patient")
	cmd.MarkFlagRequired("alert-id")
	cmd.MarkFlagRequired("by")
	return cmd
}

func setThresholdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-threshold",
		Short: "Set the active threshold for a patient and vital type",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			vital, _ := cmd.Flags().GetString("vital")
			by, _ := cmd.Flags().GetString("by")

			vt, err := models.ParseVitalType(vital)
			if err != nil {
				return err
			}
			threshold := &models.Threshold{PatientID: patientID, VitalType: vt, SetBy: by}
			if cmd.Flags().Changed("min") {
				v, _ := cmd.Flags().GetFloat64("min")
				threshold.Min = models.Float64Ptr(v)
			}
			if cmd.Flags().Changed("max") {
				v, _ := cmd.Flags().GetFloat64("max")
				threshold.Max = models.Float64Ptr(v)
			}

			return withMonitor(cmd, func(ctx context.Context, monitor *service.MonitorService) error {
				if err := monitor.SetThreshold(ctx, threshold); err != nil {
					return err
				}
				return printJSON(cmd, threshold)
			})
		},
	}
	cmd.Flags().String("patient", "", "Patient identifier")
	cmd.Flags().String("vital", "", "Vital type (BloodPressureSystolic, BloodPressureDiastolic, HeartRate, Glucose, Temperature)")
	cmd.Flags().Float64("min", 0, "Lower bound (omit for unbounded)")
	cmd.Flags().Float64("max", 0, "Upper bound (omit for unbounded)")
	cmd.Flags().String("by", "", "Clinician identifier")
	cmd.MarkFlagRequired("patient")
	cmd.MarkFlagRequired("vital")
	return cmd
}

func expandDosesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand-doses",
		Short: "Materialize dose logs for a date window",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")

			today := time.Now()
			from, err := parseDate(fromStr, today)
			if err != nil {
				return err
			}
			to, err := parseDate(toStr, from)
			if err != nil {
				return err
			}

			return withMonitor(cmd, func(ctx context.Context, monitor *service.MonitorService) error {
				created, err := monitor.MaterializeDoses(ctx, patientID, from, to)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d dose logs for %s (%s to %s)\n",
					created, patientID, from.Format(dateLayout), to.Format(dateLayout))
				return nil
			})
		},
	}
	cmd.Flags().String("patient", "", "Patient identifier")
	cmd.Flags().String("from", "", "First day (YYYY-MM-DD, default today)")
	cmd.Flags().String("to", "", "Last day inclusive (YYYY-MM-DD, default from)")
	cmd.MarkFlagRequired("patient")
	return cmd
}

func markDoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark-dose",
		Short: "Record a dose as taken or missed",
		RunE: func(cmd *cobra.Command, args []string) error {
			medicationID, _ := cmd.Flags().GetString("medication")
			at, _ := cmd.Flags().GetString("scheduled")
			status, _ := cmd.Flags().GetString("status")

			scheduled, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid scheduled time %q, want RFC3339", at)
			}

			return withMonitor(cmd, func(ctx context.Context, monitor *service.MonitorService) error {
				var log *models.DoseLog
				switch models.DoseStatus(status) {
				case models.DoseStatusTaken:
					log, err = monitor.MarkDoseTaken(ctx, medicationID, scheduled)
				case models.DoseStatusMissed:
					log, err = monitor.MarkDoseMissed(ctx, medicationID, scheduled)
				default:
					return fmt.Errorf("invalid status %q, want Taken or Missed", status)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, log)
			})
		},
	}
	cmd.Flags().String("medication", "", "Medication identifier")
	cmd.Flags().String("scheduled", "", "Scheduled time (RFC3339)")
	cmd.Flags().String("status", string(models.DoseStatusTaken), "Taken or Missed")
	cmd.MarkFlagRequired("medication")
	cmd.MarkFlagRequired("scheduled")
	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Materialize upcoming doses and record overdue doses as missed for all patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			lookahead, _ := cmd.Flags().GetInt("lookahead-days")
			return withMonitor(cmd, func(ctx context.Context, monitor *service.MonitorService) error {
				return monitor.RunScheduleTick(ctx, lookahead)
			})
		},
	}
	cmd.Flags().Int("lookahead-days", 1, "Days after today to materialize")
	return cmd
}

func adherenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adherence",
		Short: "Show medication adherence (default: this week)",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")

			return withMonitor(cmd, func(ctx context.Context, monitor *service.MonitorService) error {
				if fromStr == "" && toStr == "" {
					summary, err := monitor.WeeklyAdherence(ctx, patientID)
					if err != nil {
						return err
					}
					return printJSON(cmd, summary)
				}

				from, err := parseDate(fromStr, time.Now().AddDate(0, 0, -7))
				if err != nil {
					return err
				}
				to, err := parseDate(toStr, time.Now())
				if err != nil {
					return err
				}
				// --to 为包含的最后一天
				end := to.AddDate(0, 0, 1)
				summary, err := monitor.Adherence(ctx, patientID, from, end,
					fmt.Sprintf("%s to %s", from.Format(dateLayout), to.Format(dateLayout)))
				if err != nil {
					return err
				}
				return printJSON(cmd, summary)
			})
		},
	}
	cmd.Flags().String("patient", "", "Patient identifier")
	cmd.Flags().String("from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last day inclusive (YYYY-MM-DD)")
	cmd.MarkFlagRequired("patient")
	return cmd
}

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List a patient's alerts ordered by severity",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			status, _ := cmd.Flags().GetString("status")

			return withMonitor(cmd, func(ctx context.Context, monitor *service.MonitorService) error {
				alerts, err := monitor.ListAlerts(ctx, patientID, models.AlertStatus(status))
				if err != nil {
					return err
				}
				return printJSON(cmd, alerts)
			})
		},
	}
	cmd.Flags().String("patient", "", "Patient identifier")
	cmd.Flags().String("status", "", "Active or Resolved (default all)")
	cmd.MarkFlagRequired("patient")
	return cmd
}

func exportReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-report",
		Short: "Export weekly adherence and alert counts to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			patients, _ := cmd.Flags().GetString("patients")
			out, _ := cmd.Flags().GetString("out")

			var ids []string
			for _, id := range strings.Split(patients, ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
			if len(ids) == 0 {
				return fmt.Errorf("at least one patient is required")
			}

			return withMonitor(cmd, func(ctx context.Context, monitor *service.MonitorService) error {
				reports := make([]report.PatientReport, 0, len(ids))
				for _, id := range ids {
					summary, err := monitor.WeeklyAdherence(ctx, id)
					if err != nil {
						return err
					}
					counts, err := monitor.AlertCounts(ctx, []string{id})
					if err != nil {
						return err
					}
					reports = append(reports, report.PatientReport{PatientID: id, Adherence: summary, Alerts: counts})
				}

				data, err := report.BuildWorkbook(reports, time.Now())
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d patients)\n", out, len(reports))
				return nil
			})
		},
	}
	cmd.Flags().String("patients", "", "Comma-separated patient identifiers")
	cmd.Flags().String("out", "health-report.xlsx", "Output file")
	cmd.MarkFlagRequired("patients")
	return cmd
}
